package usecase

import "email-assistant/internal/knowledge/domain"

// DefaultSeed is the starter knowledge base loaded by "assistantctl seed".
var DefaultSeed = []domain.EntryInput{
	{
		Question: "How do I reset my password?",
		Answer:   "To reset your password, please visit our password reset page at https://example.com/reset-password. Enter your email address and follow the instructions sent to your email. If you don't receive the email within 10 minutes, check your spam folder.",
		Category: "support",
	},
	{
		Question: "I can't access my account",
		Answer:   "If you're unable to access your account, please try the following steps: 1) Clear your browser cache and cookies, 2) Try a different browser, 3) Check if your account is locked due to multiple failed login attempts. If the issue persists, contact our support team with your username and the specific error message you're seeing.",
		Category: "support",
	},
	{
		Question: "How do I update my billing information?",
		Answer:   "To update your billing information, log into your account and navigate to Settings > Billing. You can update your credit card details, billing address, and payment method. All changes are applied immediately and will be reflected in your next billing cycle.",
		Category: "billing",
	},
	{
		Question: "What are your business hours?",
		Answer:   "Our customer support team is available Monday through Friday, 9:00 AM to 6:00 PM EST. For urgent technical issues, we provide 24/7 emergency support. You can also submit support tickets at any time through our website, and we'll respond within 4 business hours.",
		Category: "general",
	},
	{
		Question: "How do I cancel my subscription?",
		Answer:   "To cancel your subscription, go to your account settings and select 'Subscription Management'. Click on 'Cancel Subscription' and follow the confirmation process. Your service will remain active until the end of your current billing period. You can reactivate your subscription at any time.",
		Category: "billing",
	},
	{
		Question: "I'm experiencing slow performance",
		Answer:   "If you're experiencing slow performance, please try: 1) Refreshing your browser, 2) Closing unnecessary browser tabs, 3) Checking your internet connection speed, 4) Clearing browser cache. If the issue continues, please provide details about your browser, operating system, and the specific actions that are slow.",
		Category: "technical",
	},
	{
		Question: "How do I contact customer support?",
		Answer:   "You can contact our customer support team through multiple channels: 1) Email: support@example.com, 2) Phone: 1-800-SUPPORT (available during business hours), 3) Live chat on our website, 4) Support ticket system. For the fastest response, we recommend using our support ticket system.",
		Category: "general",
	},
	{
		Question: "What payment methods do you accept?",
		Answer:   "We accept all major credit cards (Visa, MasterCard, American Express, Discover), PayPal, and bank transfers for annual plans. All payments are processed securely through our PCI-compliant payment processor. We also offer flexible payment plans for enterprise customers.",
		Category: "billing",
	},
	{
		Question: "How do I export my data?",
		Answer:   "To export your data, go to Settings > Data Management > Export Data. You can choose to export all data or select specific data types. Exports are available in CSV, JSON, and Excel formats. Large exports may take up to 24 hours to process and will be sent to your email.",
		Category: "data",
	},
	{
		Question: "I found a bug in your system",
		Answer:   "Thank you for reporting this issue. Please provide as much detail as possible including: 1) Steps to reproduce the bug, 2) Your browser and operating system, 3) Screenshots if applicable, 4) Expected vs. actual behavior. We take all bug reports seriously and will investigate promptly.",
		Category: "technical",
	},
	{
		Question: "How do I add team members to my account?",
		Answer:   "To add team members, go to Settings > Team Management > Add Member. Enter their email address and select their role (Admin, Editor, or Viewer). They'll receive an invitation email with instructions to join. You can manage permissions and remove team members at any time.",
		Category: "account",
	},
	{
		Question: "What is your refund policy?",
		Answer:   "We offer a 30-day money-back guarantee for all new subscriptions. If you're not satisfied with our service within the first 30 days, contact our support team for a full refund. After 30 days, refunds are evaluated on a case-by-case basis for technical issues or service failures.",
		Category: "billing",
	},
	{
		Question: "How do I enable two-factor authentication?",
		Answer:   "To enable two-factor authentication, go to Settings > Security > Two-Factor Authentication. Click 'Enable 2FA' and follow the setup process. You'll need to scan a QR code with your authenticator app (Google Authenticator, Authy, etc.) and enter the verification code. We strongly recommend enabling 2FA for enhanced security.",
		Category: "security",
	},
	{
		Question: "I'm locked out of my account",
		Answer:   "If you're locked out of your account due to multiple failed login attempts, please wait 15 minutes before trying again. If you still can't access your account, use the 'Forgot Password' link to reset your password. For security reasons, we may require additional verification if suspicious activity is detected.",
		Category: "security",
	},
	{
		Question: "How do I change my email address?",
		Answer:   "To change your email address, go to Settings > Profile > Email Address. Enter your new email address and current password. You'll receive a verification email at the new address. Click the verification link to confirm the change. Your old email address will no longer have access to the account.",
		Category: "account",
	},
}
